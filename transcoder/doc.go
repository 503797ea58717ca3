// Package transcoder moves strings across the host/guest boundary.
//
// Host strings are written into memory the guest allocates, guest strings are
// read back and validated. Both directions go through a memview.Cache so a
// memory growth triggered by the guest allocator never leaves a stale view.
//
//	enc := transcoder.NewStringEncoder(views, alloc)
//	ptr, n, err := enc.Encode(ctx, "a€b") // allocates 3, reallocates 7, n == 5
//
//	dec := transcoder.NewStringDecoder(views)
//	s, err := dec.Decode(ptr, n)
package transcoder
