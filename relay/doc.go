/*
Package relay forwards the channel event log to external consumers.

A Relay polls the event log on an interval and hands every new event to a
Sink, in order. The channel controller never waits for the relay. When a
sink fails the batch stops and the next tick starts again from the last
event that was forwarded, so consumers see every event at least once.
*/
package relay
