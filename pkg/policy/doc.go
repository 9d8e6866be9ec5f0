// Package policy stores organization policies and answers which policies
// apply to a given user. Policies gate membership transitions: two-step
// login requirements at confirmation, single-organization restrictions, and
// admin account recovery auto-enrollment.
package policy
