/*
Package api exposes the channel controller over HTTP.

Requests and responses are JSON. Binary values (signatures, evidence,
public keys) are hex encoded and addresses use their bech32 form. Every
failed request answers with a body

	{"code": 1027, "class": "state_conflict", "error": "insufficient channel balance"}

where code is the registered error code and class tells the client
whether to fix the input (validation), refresh its view of the channel
(state_conflict), stop (authorization) or look elsewhere (not_found).
*/
package api
