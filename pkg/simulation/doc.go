// Package simulation replays recorded or synthetic event batches against a
// candidate rule module before it is activated. Runs never touch the audit
// log or live spend totals, so repeating a run with the same module and
// events yields identical counts.
package simulation
