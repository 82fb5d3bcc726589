/*
Package strategy holds the static configuration binding each focus to one
reasoning strategy: system instruction, prompt builder, sampling parameters,
output mode, and the shape of the request's inline payload.

The registry is the single point of coupling between foci and behavior.
Extending the system to a new focus means one new Descriptor and one new
registry entry; no other component hard-codes focus-specific logic.
*/
package strategy
