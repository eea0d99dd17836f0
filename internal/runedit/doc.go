// Package runedit is the edit session for a stored recurring run.
//
// A Session seeds a trigger form from the run, mirrors every form change into
// a draft, re-validates on each change and writes the draft back on Save.
package runedit
