// Package cellstore implements the read side of a calculation: point and
// range reads over the input workbooks of a session.
//
// A Session is opened once per calculation through an Opener. Opening
// bulk-loads every input cell into an immutable snapshot; reads that miss the
// snapshot go to the persistent store, and a cell that the store does not
// have either is Empty rather than an error.
package cellstore
