// Package state persists settings values and runs the load, save and reset
// cycle for a settings module.
//
// Stores only load, save and delete one record per Ref. The Controller owns
// the read-modify-write cycle on top of them:
//
//	submitted -> unslash -> validate -> sanitize -> filter -> merge -> Store.Save -> notify
//
// A module's values either own a whole record or live under the record's
// "modules" key next to sibling modules (see Record and Modules). Writes
// always read the current record first so siblings survive.
//
// Identifiers:
//
//	site/<key>               Ref with the site scope
//	tenant/<tenant_id>/<key> Ref with a tenant scope
//	item/<item_id>/<key>     ItemRef for per-item metabox values
package state
