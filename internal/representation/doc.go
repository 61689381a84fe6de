// Package representation defines the contract shared by every backend encoding of a
// piece of data, and the two per-family registries that produce them.
//
// A Family groups the kinds that can be converted into one another (for example the
// "volume" family has ram, gpu and disk kinds). A CreatorRegistry builds a default
// instance of one kind from nothing. A ConversionRegistry holds single-hop Rules and
// finds the shortest chain of them between an available kind and a requested one.
//
// Every registration returns a *Handle. Releasing the handle withdraws exactly that
// registration; releasing it again does nothing.
//
// # Example
//
//	creators := representation.NewCreatorRegistry("volume")
//	conversions := representation.NewConversionRegistry("volume")
//	h := conversions.Register(representation.NewRule("disk", "ram", loadFromDisk))
//	defer h.Release()
//
//	path, ok := conversions.Resolve([]representation.Kind{"disk"}, "ram")
//	if ok {
//		ram, err := conversions.Apply(ctx, path, diskRep)
//	}
package representation
