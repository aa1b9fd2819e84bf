package rrdp

// Diff computes the Delta that transforms old into new:
//
//	old has | new has | bytes equal | result
//	  no    |  yes    |     —       | publish without hash
//	  yes   |  no     |     —       | withdraw with old_hash
//	  yes   |  yes    |    yes      | no entry
//	  yes   |  yes    |    no       | publish with hash = old_hash (update)
//
// new must be the snapshot for old.Serial+1 in the same session; Diff does
// not itself enforce that — the caller (the Session Planner) is responsible
// for only ever diffing consecutive snapshots.
func Diff(old, new Snapshot) Delta {
	oldByURI := old.ByURI()
	newByURI := new.ByURI()

	d := Delta{SessionID: new.SessionID, Serial: new.Serial}

	for uri, oldObj := range oldByURI {
		newObj, stillPresent := newByURI[uri]
		if !stillPresent {
			d.Withdraws = append(d.Withdraws, Withdraw{URI: uri, OldHash: oldObj.Hash})
			continue
		}
		if newObj.Hash != oldObj.Hash {
			d.Updates = append(d.Updates, Update{
				URI:     uri,
				Bytes:   newObj.Bytes,
				Hash:    newObj.Hash,
				OldHash: oldObj.Hash,
			})
		}
	}

	for uri, newObj := range newByURI {
		if _, existed := oldByURI[uri]; !existed {
			d.Publishes = append(d.Publishes, Publish{URI: uri, Bytes: newObj.Bytes, Hash: newObj.Hash})
		}
	}

	sortDeltaElements(&d)
	return d
}

// Apply performs the publish/update/withdraw semantics on old, returning
// the resulting snapshot. It is the inverse operation exercised by the
// round-trip law apply(diff(A, B), A) == B.
func Apply(old Snapshot, d Delta) Snapshot {
	byURI := old.ByURI()

	for _, w := range d.Withdraws {
		delete(byURI, w.URI)
	}
	for _, u := range d.Updates {
		byURI[u.URI] = Object{URI: u.URI, Bytes: u.Bytes, Hash: u.Hash}
	}
	for _, p := range d.Publishes {
		byURI[p.URI] = Object{URI: p.URI, Bytes: p.Bytes, Hash: p.Hash}
	}

	out := Snapshot{SessionID: d.SessionID, Serial: d.Serial}
	for _, obj := range byURI {
		out.Objects = append(out.Objects, obj)
	}
	return out.SortedByURI()
}

func sortDeltaElements(d *Delta) {
	sortByURI(d.Publishes, func(i, j int) bool { return d.Publishes[i].URI < d.Publishes[j].URI })
	sortByURI(d.Updates, func(i, j int) bool { return d.Updates[i].URI < d.Updates[j].URI })
	sortByURI(d.Withdraws, func(i, j int) bool { return d.Withdraws[i].URI < d.Withdraws[j].URI })
}

// sortByURI is a tiny helper so the three element slices above can share one
// call site despite having distinct element types; it just runs a stable
// insertion sort, which is plenty for RPKI-scale delta sizes.
func sortByURI[T any](s []T, less func(i, j int) bool) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && less(j, j-1); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
