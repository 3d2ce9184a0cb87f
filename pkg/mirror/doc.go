/*
Package mirror implements the two halves of a mirroring session.

The sending side pulls changed paths from an event source and writes one
record per change to the connection: the root-relative path as a blob
frame, then the file's length and raw contents. A file that can't be
opened anymore is sent as a tombstone (length -1) instead, telling the
receiver to delete its copy -- files routinely vanish between the change
notification and the read, and that shouldn't kill the connection.

The receiving side applies records to a destination root as they arrive:
writing the contents (creating missing parent directories), or deleting
the path for a tombstone. Contents are streamed straight between disk and
socket in both directions; whole files are never held in memory.

There are no acknowledgements. Records are applied in the order they were
sent because both sides share one connection.
*/
package mirror
