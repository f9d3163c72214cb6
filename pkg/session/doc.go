/*
Package session serializes access to episodes of a long-term memory store.

A Manager wraps any ports.MemoryStore so that operations on the same episode
never interleave. Stores built from several round trips (a file append plus
fsync, a Redis list push plus an index update) do not promise that on their
own. Locks are reference counted and dropped once no caller holds them.
*/
package session
