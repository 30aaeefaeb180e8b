// Package catalog holds the static table of recurring event types: how each
// one recurs, its default repeat interval, its instances and its legacy slot
// order.
//
// A Catalog is immutable once built. The default table ships embedded as
// default.yaml and can be replaced by a file referenced from config.
package catalog
