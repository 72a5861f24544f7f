/*
Package gconf provides a toolset for managing an extension configuration.

Extensions can store their configuration as a singleton in the database
under a key derived from the package name. Configuration is loaded from the
genesis file conf section during initialization and can be read back by
the extension at any time.
*/
package gconf
