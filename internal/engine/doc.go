// Package engine is the synchronization facade external collaborators call.
//
// It decides between the online path (submit now, then track the authority's
// disposition) and the offline path (queue for contingency retry), owns the
// tracker and contingency queue lifetimes, and exposes the engine event
// stream. The environment switch lives here too: swapping between the
// production and test authority endpoints replaces the client used by new
// work while in-flight tracking tasks keep the client they started with.
package engine
