// Package cli holds terminal helpers shared by the navi commands: result
// output in YAML, JSON or tables, and styled status lines.
package cli
