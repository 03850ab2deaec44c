package registry

import (
	"github.com/txn2/fdw-bridge/pkg/backends/memtable"
	"github.com/txn2/fdw-bridge/pkg/backends/sqltable"
	"github.com/txn2/fdw-bridge/pkg/fdw"
)

// RegisterBuiltinFactories registers all built-in backend factories.
func RegisterBuiltinFactories(r *Registry) {
	r.RegisterFactory("memtable", MemTableFactory)
	r.RegisterFactory("sqltable", SQLTableFactory)
}

// MemTableFactory creates an in-memory backend instance.
func MemTableFactory(desc *fdw.Descriptor) (fdw.ForeignData, error) {
	return memtable.New(desc)
}

// SQLTableFactory creates a SQL-backed instance.
func SQLTableFactory(desc *fdw.Descriptor) (fdw.ForeignData, error) {
	return sqltable.New(desc)
}
