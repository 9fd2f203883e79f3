// Package receipt models a bilingual cash-sale or receipt document: its
// label dictionaries, its editable fields and the amounts derived from
// them.
//
// The document state is a Query, named after the URL query string it is
// shared through. Labels come from a Catalog of YAML locales; English and
// Thai are built in and a directory of YAML files can add or replace
// languages at runtime.
package receipt
