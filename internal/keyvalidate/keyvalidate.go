// Package keyvalidate enforces the `service:table:primary_key` key format
// (§4.2) and derives the pub/sub topic a key belongs to.
package keyvalidate

import "strings"

// ErrInvalidFormat is returned by Validate3Part when a key, split on its
// first two colons, does not yield three non-empty parts, and by
// ValidateTopic when a topic does not have the "t:svc:table" shape.
type ErrInvalidFormat struct {
	Key string
}

func (e *ErrInvalidFormat) Error() string {
	return "keyvalidate: key must be service:table:primary_key: " + e.Key
}

// Parts is a validated three-part key: service, table, primary key.
type Parts struct {
	Service string
	Table   string
	PK      string
}

// Validate3Part splits key on ':' into exactly three non-empty parts.
// Unlike strings.Split, it treats the first two colons as delimiters and
// allows ':' to appear freely inside the primary key segment (mirroring a
// splitn(3, ':') split), since primary keys are the part most likely to
// carry arbitrary application-chosen characters.
func Validate3Part(key string) (Parts, error) {
	first := strings.IndexByte(key, ':')
	if first < 0 {
		return Parts{}, &ErrInvalidFormat{Key: key}
	}
	rest := key[first+1:]
	second := strings.IndexByte(rest, ':')
	if second < 0 {
		return Parts{}, &ErrInvalidFormat{Key: key}
	}
	service := key[:first]
	table := rest[:second]
	pk := rest[second+1:]
	if service == "" || table == "" || pk == "" {
		return Parts{}, &ErrInvalidFormat{Key: key}
	}
	return Parts{Service: service, Table: table, PK: pk}, nil
}

// TopicFromKey derives the invalidation topic for a validated key: "t:svc:table".
func TopicFromKey(p Parts) string {
	return "t:" + p.Service + ":" + p.Table
}

// ValidateTopic checks a client-supplied SUBSCRIBE topic has the "t:svc:table"
// shape expected by the bus.
func ValidateTopic(topic string) error {
	if !strings.HasPrefix(topic, "t:") {
		return &ErrInvalidFormat{Key: topic}
	}
	rest := topic[2:]
	sep := strings.IndexByte(rest, ':')
	if sep <= 0 || sep == len(rest)-1 {
		return &ErrInvalidFormat{Key: topic}
	}
	return nil
}
