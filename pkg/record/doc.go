// Package record is an active-record layer over a types.Store.
//
// A Table loads the column metadata of one database table and creates Rows.
// A Row tracks which columns changed since it was last read or written and
// persists itself with Save: a new row is inserted, an existing row has its
// dirty columns updated, and in both cases the row image returned by the
// store (through RETURNING where available) replaces the row's values.
//
// Every save runs in its own cycle with a fresh ErrorSet. Required-field
// checks and the pre-save, pre-insert and pre-update hooks push errors onto
// it; any error stops the save with a *types.ValidationFailedError before a
// statement is sent.
//
//	items, err := record.NewTable(ctx, store, types.TableSpec{Name: "items"},
//		record.RowType{Resource: "item", Required: []string{"name"}}, record.Options{})
//	row, _ := items.Create(map[string]any{"name": "widget", "active": true})
//	id, err := row.Save(ctx)
package record
