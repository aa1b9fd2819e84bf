// Package rrdpxml implements serialization and parsing of the
// notification, snapshot, and delta XML documents defined by RFC 8182.
package rrdpxml

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"rrdpd/internal/hash"
	"rrdpd/internal/rrdp"
)

const version = "1"

var hashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func validateHash(h string) error {
	if !hashPattern.MatchString(h) {
		return fmt.Errorf("invalid hash %q: not 64 lowercase hex characters: %w", h, rrdp.ErrParse)
	}
	return nil
}

// --- wire types -------------------------------------------------------

type xmlNotification struct {
	XMLName xml.Name       `xml:"http://www.ripe.net/rpki/rrdp notification"`
	Version string         `xml:"version,attr"`
	Session string         `xml:"session_id,attr"`
	Serial  uint64         `xml:"serial,attr"`
	Snap    xmlSnapshotRef `xml:"snapshot"`
	Deltas  []xmlDeltaRef  `xml:"delta"`
}

type xmlSnapshotRef struct {
	URI  string `xml:"uri,attr"`
	Hash string `xml:"hash,attr"`
}

type xmlDeltaRef struct {
	Serial uint64 `xml:"serial,attr"`
	URI    string `xml:"uri,attr"`
	Hash   string `xml:"hash,attr"`
}

type xmlSnapshot struct {
	XMLName xml.Name     `xml:"http://www.ripe.net/rpki/rrdp snapshot"`
	Version string       `xml:"version,attr"`
	Session string       `xml:"session_id,attr"`
	Serial  uint64       `xml:"serial,attr"`
	Publish []xmlPublish `xml:"publish"`
}

type xmlPublish struct {
	URI  string `xml:"uri,attr"`
	Hash string `xml:"hash,attr,omitempty"`
	Body string `xml:",chardata"`
}

type xmlDelta struct {
	XMLName  xml.Name      `xml:"http://www.ripe.net/rpki/rrdp delta"`
	Version  string        `xml:"version,attr"`
	Session  string        `xml:"session_id,attr"`
	Serial   uint64        `xml:"serial,attr"`
	Publish  []xmlPublish  `xml:"publish"`
	Withdraw []xmlWithdraw `xml:"withdraw"`
}

type xmlWithdraw struct {
	URI  string `xml:"uri,attr"`
	Hash string `xml:"hash,attr"`
}

// --- Notification -------------------------------------------------------

// MarshalNotification serializes n in descending delta-serial order.
func MarshalNotification(n rrdp.Notification) ([]byte, error) {
	deltas := append([]rrdp.DeltaRef(nil), n.DeltaRefs...)
	sort.Slice(deltas, func(i, j int) bool { return deltas[i].Serial > deltas[j].Serial })

	w := xmlNotification{
		Version: version,
		Session: n.SessionID,
		Serial:  n.Serial,
		Snap:    xmlSnapshotRef{URI: n.SnapshotRef.URI, Hash: n.SnapshotRef.Hash},
	}
	for _, d := range deltas {
		w.Deltas = append(w.Deltas, xmlDeltaRef{Serial: d.Serial, URI: d.Ref.URI, Hash: d.Ref.Hash})
	}
	return marshalDocument(w)
}

// ParseNotification parses a notification document. Unknown top-level
// elements are rejected; unknown attributes are ignored (encoding/xml's
// default behavior already ignores attributes not mapped to a field).
var notificationChildren = map[string]bool{"snapshot": true, "delta": true}

func ParseNotification(data []byte) (rrdp.Notification, error) {
	if err := checkKnownChildren(data, notificationChildren); err != nil {
		return rrdp.Notification{}, err
	}
	var w xmlNotification
	if err := unmarshalDocument(data, &w); err != nil {
		return rrdp.Notification{}, err
	}
	if err := validateHash(w.Snap.Hash); err != nil {
		return rrdp.Notification{}, err
	}
	n := rrdp.Notification{
		SessionID:   w.Session,
		Serial:      w.Serial,
		SnapshotRef: rrdp.FileRef{URI: w.Snap.URI, Hash: w.Snap.Hash},
	}
	for _, d := range w.Deltas {
		if err := validateHash(d.Hash); err != nil {
			return rrdp.Notification{}, err
		}
		n.DeltaRefs = append(n.DeltaRefs, rrdp.DeltaRef{
			Serial: d.Serial,
			Ref:    rrdp.FileRef{URI: d.URI, Hash: d.Hash},
		})
	}
	return n, nil
}

// --- Snapshot -------------------------------------------------------

// MarshalSnapshot serializes s with objects in URI order and base64-encoded
// bodies, no embedded whitespace.
func MarshalSnapshot(s rrdp.Snapshot) ([]byte, error) {
	sorted := s.SortedByURI()
	w := xmlSnapshot{Version: version, Session: sorted.SessionID, Serial: sorted.Serial}
	for _, o := range sorted.Objects {
		w.Publish = append(w.Publish, xmlPublish{
			URI:  o.URI,
			Body: base64.StdEncoding.EncodeToString(o.Bytes),
		})
	}
	return marshalDocument(w)
}

// ParseSnapshot parses a snapshot document.
var snapshotChildren = map[string]bool{"publish": true}

func ParseSnapshot(data []byte) (rrdp.Snapshot, error) {
	if err := checkKnownChildren(data, snapshotChildren); err != nil {
		return rrdp.Snapshot{}, err
	}
	var w xmlSnapshot
	if err := unmarshalDocument(data, &w); err != nil {
		return rrdp.Snapshot{}, err
	}
	s := rrdp.Snapshot{SessionID: w.Session, Serial: w.Serial}
	for _, p := range w.Publish {
		body, err := decodeBase64(p.Body)
		if err != nil {
			return rrdp.Snapshot{}, err
		}
		s.Objects = append(s.Objects, rrdp.Object{URI: p.URI, Bytes: body, Hash: sha256Hex(body)})
	}
	return s.SortedByURI(), nil
}

// --- Delta -------------------------------------------------------

// MarshalDelta serializes d with publishes and withdraws in URI order.
func MarshalDelta(d rrdp.Delta) ([]byte, error) {
	w := xmlDelta{Version: version, Session: d.SessionID, Serial: d.Serial}

	publishes := append([]rrdp.Publish(nil), d.Publishes...)
	sort.Slice(publishes, func(i, j int) bool { return publishes[i].URI < publishes[j].URI })
	for _, p := range publishes {
		w.Publish = append(w.Publish, xmlPublish{URI: p.URI, Body: base64.StdEncoding.EncodeToString(p.Bytes)})
	}

	updates := append([]rrdp.Update(nil), d.Updates...)
	sort.Slice(updates, func(i, j int) bool { return updates[i].URI < updates[j].URI })
	for _, u := range updates {
		w.Publish = append(w.Publish, xmlPublish{URI: u.URI, Hash: u.OldHash, Body: base64.StdEncoding.EncodeToString(u.Bytes)})
	}

	withdraws := append([]rrdp.Withdraw(nil), d.Withdraws...)
	sort.Slice(withdraws, func(i, j int) bool { return withdraws[i].URI < withdraws[j].URI })
	for _, wd := range withdraws {
		w.Withdraw = append(w.Withdraw, xmlWithdraw{URI: wd.URI, Hash: wd.OldHash})
	}

	return marshalDocument(w)
}

// ParseDelta parses a delta document. A <publish> with a hash attribute is
// an Update; without one, a Publish.
var deltaChildren = map[string]bool{"publish": true, "withdraw": true}

func ParseDelta(data []byte) (rrdp.Delta, error) {
	if err := checkKnownChildren(data, deltaChildren); err != nil {
		return rrdp.Delta{}, err
	}
	var w xmlDelta
	if err := unmarshalDocument(data, &w); err != nil {
		return rrdp.Delta{}, err
	}
	d := rrdp.Delta{SessionID: w.Session, Serial: w.Serial}
	for _, p := range w.Publish {
		body, err := decodeBase64(p.Body)
		if err != nil {
			return rrdp.Delta{}, err
		}
		digest := sha256Hex(body)
		if p.Hash == "" {
			d.Publishes = append(d.Publishes, rrdp.Publish{URI: p.URI, Bytes: body, Hash: digest})
			continue
		}
		if err := validateHash(p.Hash); err != nil {
			return rrdp.Delta{}, err
		}
		d.Updates = append(d.Updates, rrdp.Update{URI: p.URI, Bytes: body, Hash: digest, OldHash: p.Hash})
	}
	for _, wd := range w.Withdraw {
		if err := validateHash(wd.Hash); err != nil {
			return rrdp.Delta{}, err
		}
		d.Withdraws = append(d.Withdraws, rrdp.Withdraw{URI: wd.URI, OldHash: wd.Hash})
	}
	return d, nil
}

// --- helpers -------------------------------------------------------

func marshalDocument(v any) ([]byte, error) {
	out, err := xml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling rrdp document: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

func unmarshalDocument(data []byte, v any) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("parsing rrdp document: %w: %w", err, rrdp.ErrParse)
	}
	return nil
}

// checkKnownChildren rejects documents that contain a direct child of the
// root element other than one named in allowed. encoding/xml silently
// ignores unrecognized elements, so rejecting unknown top-level elements
// needs this separate pass.
func checkKnownChildren(data []byte, allowed map[string]bool) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	depth := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("scanning rrdp document: %w: %w", err, rrdp.ErrParse)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth == 2 && !allowed[t.Name.Local] {
				return fmt.Errorf("unexpected element %q: %w", t.Name.Local, rrdp.ErrParse)
			}
		case xml.EndElement:
			depth--
		}
	}
}

func decodeBase64(body string) ([]byte, error) {
	trimmed := stripWhitespace(body)
	out, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 publish body: %w: %w", err, rrdp.ErrParse)
	}
	return out, nil
}

// stripWhitespace removes characters the XML decoder may leave in chardata
// when a document was pretty-printed by hand; parsing tolerates embedded
// whitespace in base64 bodies even though emitters never produce it.
func stripWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func sha256Hex(data []byte) string {
	return hash.Hex(data)
}
