// Package core provides the business logic for CRM record intake.
//
// This package holds the domain rules for accounts, contacts and leads,
// independent of any transport or storage. It is used by the HTTP API, the
// crmctl command and tests without modification.
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - Entity Definitions: Registered via the registry, each kind has field
//     specs with header aliases, validation rules and an export column order.
//   - RecordStore: The storage contract. Stores are tenant-scoped and enforce
//     per-tenant uniqueness themselves (see store/memstore and store/postgres).
//   - Service: The main entry point for all operations (create, import,
//     export, convert).
//
// # Entity Registry
//
// Kinds are registered at init time using [Register]. Each [EntityDefinition]
// contains everything needed to turn raw values into an entity:
//
//	core.Register(EntityDefinition{
//	    Info: EntityInfo{Kind: KindAccount, Label: "Accounts"},
//	    FieldSpecs: []FieldSpec{
//	        {Name: FieldName, Aliases: []string{"account_name"}, Type: FieldText, Required: true},
//	        {Name: FieldRevenue, Type: FieldNumeric, Min: 0, Max: 1e15},
//	    },
//	    ExportColumns: []Field{FieldName, FieldRevenue},
//	    Build: buildAccount,
//	})
//
// # Duplicate Detection
//
// Every create passes through the duplicate guard, which looks up the
// normalized identity (account name, contact email, active lead email) in
// the tenant. Imports may skip the guard per kind through [DedupePolicy];
// the store's unique constraints still reject the row.
//
// # Import
//
// [Service.Import] parses CSV text, maps headers by name or alias and
// creates one record per row. Row failures are collected in
// [ImportResult.FailedRows] without stopping the import. Concurrent imports
// are bounded by [ImportLimiter].
//
// # Lead Conversion
//
// [Service.Convert] creates a contact from a lead and marks the lead
// converted in one store transaction. [Service.Reconcile] links a lead to
// a contact that already carries its email.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - DUP001-DUP002: Duplicate records
//   - REC001-REC003: Missing or already converted records
//   - DB002-DB008: Store errors (constraints, connections)
//   - VAL000-VAL007: Validation errors (formats, missing columns)
//   - FILE001-FILE005: File errors (size, encoding, format)
//   - IMP001-IMP003: Import errors (busy, cancelled, timeout)
package core
