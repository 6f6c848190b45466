// Package replay turns a loaded dataset into an endless sequence of
// fixed-size batches.
//
// A [Cursor] walks one dataset in order and wraps to the start when it runs
// off the end:
//
//	cur, err := replay.NewCursor(ds, 2)
//	batch := cur.Next() // records [0, 2)
//	batch = cur.Next()  // records [2, 4), clipped to the dataset
//
// A [Service] owns the dataset and cursor for the lifetime of a server and
// decides, according to its [ReloadPolicy], when the dataset is loaded
// again. It is built once at startup and handed to the transport; there is
// no package-level instance.
package replay
