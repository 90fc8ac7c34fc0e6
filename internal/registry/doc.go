// Package registry keeps the set of devices the hub has reported.
//
// Each snapshot is merged into the registry: new ids become devices included in
// the next session by default, known ids are refreshed in place while keeping
// their inclusion flag, and nothing is ever deleted (a vanished device shows
// up as Disconnected, not as a missing row). After every merge the list is
// sorted by case-insensitive name and the eligible view (Ready, Connecting or
// DiscoveringCapabilities) is recomputed.
//
// Readers always receive copies; the registry itself belongs to the controller
// loop and is not safe for concurrent use.
package registry
