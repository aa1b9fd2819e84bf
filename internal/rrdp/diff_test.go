package rrdp

import "testing"

func obj(uri, bytes, hash string) Object {
	return Object{URI: uri, Bytes: []byte(bytes), Hash: hash}
}

func TestDiffPublishUpdateWithdraw(t *testing.T) {
	old := Snapshot{
		SessionID: "s1", Serial: 1,
		Objects: []Object{
			obj("rsync://a/keep.cer", "keep", "h-keep"),
			obj("rsync://a/change.cer", "before", "h-before"),
			obj("rsync://a/gone.cer", "gone", "h-gone"),
		},
	}
	new := Snapshot{
		SessionID: "s1", Serial: 2,
		Objects: []Object{
			obj("rsync://a/keep.cer", "keep", "h-keep"),
			obj("rsync://a/change.cer", "after", "h-after"),
			obj("rsync://a/added.cer", "added", "h-added"),
		},
	}

	d := Diff(old, new)

	if len(d.Publishes) != 1 || d.Publishes[0].URI != "rsync://a/added.cer" {
		t.Fatalf("expected one publish for added.cer, got %+v", d.Publishes)
	}
	if len(d.Updates) != 1 || d.Updates[0].URI != "rsync://a/change.cer" || d.Updates[0].OldHash != "h-before" {
		t.Fatalf("expected one update for change.cer with old_hash h-before, got %+v", d.Updates)
	}
	if len(d.Withdraws) != 1 || d.Withdraws[0].URI != "rsync://a/gone.cer" || d.Withdraws[0].OldHash != "h-gone" {
		t.Fatalf("expected one withdraw for gone.cer, got %+v", d.Withdraws)
	}
}

func TestDiffIdenticalSnapshotsIsEmpty(t *testing.T) {
	s := Snapshot{
		SessionID: "s1", Serial: 1,
		Objects: []Object{obj("rsync://a/x.cer", "x", "h-x")},
	}
	d := Diff(s, s)
	if !d.IsEmpty() {
		t.Fatalf("expected empty delta for identical snapshots, got %+v", d)
	}
}

func TestApplyIsInverseOfDiff(t *testing.T) {
	old := Snapshot{
		SessionID: "s1", Serial: 1,
		Objects: []Object{
			obj("rsync://a/keep.cer", "keep", "h-keep"),
			obj("rsync://a/change.cer", "before", "h-before"),
			obj("rsync://a/gone.cer", "gone", "h-gone"),
		},
	}
	new := Snapshot{
		SessionID: "s1", Serial: 2,
		Objects: []Object{
			obj("rsync://a/keep.cer", "keep", "h-keep"),
			obj("rsync://a/change.cer", "after", "h-after"),
			obj("rsync://a/added.cer", "added", "h-added"),
		},
	}

	d := Diff(old, new)
	got := Apply(old, d)

	wantByURI := new.SortedByURI().ByURI()
	gotByURI := got.ByURI()
	if len(gotByURI) != len(wantByURI) {
		t.Fatalf("object count mismatch: got %d want %d", len(gotByURI), len(wantByURI))
	}
	for uri, wantObj := range wantByURI {
		gotObj, ok := gotByURI[uri]
		if !ok {
			t.Fatalf("missing uri %s after apply", uri)
		}
		if gotObj.Hash != wantObj.Hash {
			t.Fatalf("hash mismatch for %s: got %s want %s", uri, gotObj.Hash, wantObj.Hash)
		}
	}
}

func TestDiffOrdersElementsByURI(t *testing.T) {
	old := Snapshot{SessionID: "s1", Serial: 1}
	new := Snapshot{
		SessionID: "s1", Serial: 2,
		Objects: []Object{
			obj("rsync://a/c.cer", "c", "h-c"),
			obj("rsync://a/a.cer", "a", "h-a"),
			obj("rsync://a/b.cer", "b", "h-b"),
		},
	}
	d := Diff(old, new)
	if len(d.Publishes) != 3 {
		t.Fatalf("expected 3 publishes, got %d", len(d.Publishes))
	}
	for i := 1; i < len(d.Publishes); i++ {
		if d.Publishes[i-1].URI > d.Publishes[i].URI {
			t.Fatalf("publishes not sorted by URI: %+v", d.Publishes)
		}
	}
}
