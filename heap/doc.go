// Package heap implements the handle table through which a guest module
// refers to host values.
//
// The guest never sees host values, only 32-bit handles. Handles below
// FirstFree are permanent sentinels:
//
//	0..127  undefined (padding)
//	128     undefined
//	129     null
//	130     true
//	131     false
//
// Freed handles are recycled last-in first-out:
//
//	tbl := heap.NewTable()
//	h := tbl.Alloc("hello")   // 132
//	v, err := tbl.Take(h)     // "hello", slot 132 becomes vacant
//	tbl.Alloc(3.0)            // 132 again
package heap
