// Package resource tracks values that own foreign handles, such as opened
// native libraries and script sessions, so they can be released together.
//
// Handle lifetime is explicit. Nothing here relies on finalizers:
//
//	table := resource.NewTable()
//	h, err := table.Insert("native", mod)
//
//	// Release one value early
//	err = table.Release(ctx, h)
//
//	// Release the rest, newest first
//	err = table.Close(ctx)
//
// After Close, Insert fails with ErrClosed. Observers registered with
// Subscribe see EventOpened and EventReleased for every handle.
package resource
