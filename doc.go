/*
Package sideload defers linkage of an optional, versioned module until host
startup, without declaring the module as a build-time dependency.

# Underwater

 1. The module ships as an opaque payload inside the host's read-only asset
    bundle and is cached on durable storage keyed by version ([Store]).
 2. An isolated resolver is built over the cached payload, delegating
    unresolved lookups to the host's own resolver ([NewIsolated]).
 3. The isolated resolver's search path is spliced in front of the host
    resolver's own via privileged structural introspection
    ([SearchPathAccessor], [MergeIntoHost]); after the merge the module's
    symbols resolve through the host's normal lookup path, indistinguishable
    from static linkage.
 4. When the merge is denied or not honored, the retained direct handle is
    driven reflectively instead ([Invoke]).

# Notes

 1. The whole sequence is a best-effort startup operation: [Sideloader.LoadModule]
    never raises to its caller, failures are logged once and swallowed.
 2. Resolvers and sources are not thread-safe; the facade serializes its own
    calls and latches after the first terminal state.
 3. Script payloads (.js) run on a github.com/dop251/goja VM; object payloads
    (.o, .a) are linked at runtime with github.com/pkujhd/goloader.

# Inspect tool

A payload and cache inspection cli can be installed by:

	go install github.com/arcova/sideload/inspect@latest

# Samples

See testdata and tests.
*/
package sideload
