// Package harvest extracts structured records from web pages using
// user-defined selector rules, optionally enriches them with AI-generated
// fields, and exports the result as tabular or structured artifacts.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., goquery/, sqlite/, gemini/).
package harvest
