/*
Package errors implements the error model shared by all microchan packages.

Every error returned by a microchan package should wrap one of the root
errors declared with Register. A root error carries a numeric code that
does not change between releases, which allows clients (HTTP API, relay
consumers) to distinguish error kinds without parsing messages.

Popular root errors are declared in this package. Extensions declare their
own using Register with a code from the range reserved for them, for
example x/paychan uses 1021-1039.

Create an error instance at the point where the problem is detected

	return errors.Wrapf(errors.ErrInput, "deposit %d", amount)

and test for its kind with

	if errors.ErrNotFound.Is(err) { ... }

Stack trace information is attached once, at the most inner wrap. Use %+v
to print it.
*/
package errors
