// Package weavetest provides helpers for testing channel extensions:
// deterministic keys, controllable clocks and funded ledgers.
package weavetest
