// Package normalisers turns stored source records into flat, queryable
// documents. Each sub-package handles one record variant (tracker issues,
// wiki pages); the Registry dispatches on the record's source kind.
//
// Normalisers are registered with the Registry at startup.
package normalisers
