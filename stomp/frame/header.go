package frame

import "slices"

// Kind identifies a header variant. Every recognised header name has its
// own kind; anything else is Custom and keeps the name it arrived with.
type Kind int

const (
	Custom Kind = iota
	AcceptVersion
	HeartBeat
	Destination
	ID
	Version
	Subscription
	MessageID
	ContentLength
	MessageText
	UserName
	ContentType
)

// Header names understood by the registry.
const (
	NameAcceptVersion = "accept-version"
	NameHeartBeat     = "heart-beat"
	NameDestination   = "destination"
	NameID            = "id"
	NameVersion       = "version"
	NameSubscription  = "subscription"
	NameMessageID     = "message-id"
	NameContentLength = "content-length"
	NameMessage       = "message"
	NameUserName      = "user-name"
	NameContentType   = "content-type"
)

var kindNames = map[Kind]string{
	AcceptVersion: NameAcceptVersion,
	HeartBeat:     NameHeartBeat,
	Destination:   NameDestination,
	ID:            NameID,
	Version:       NameVersion,
	Subscription:  NameSubscription,
	MessageID:     NameMessageID,
	ContentLength: NameContentLength,
	MessageText:   NameMessage,
	UserName:      NameUserName,
	ContentType:   NameContentType,
}

var namedKinds = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

// Header is a single name/value pair. Two headers are the same entry when
// their names match, whatever their values.
type Header struct {
	kind  Kind
	name  string
	value string
}

// NewHeader returns the typed variant for a recognised name, or a Custom
// header keeping name verbatim.
func NewHeader(name, value string) Header {
	if k, ok := namedKinds[name]; ok {
		return Header{kind: k, value: value}
	}
	return Header{kind: Custom, name: name, value: value}
}

func newKind(k Kind, value string) Header { return Header{kind: k, value: value} }

// Typed constructors for the recognised headers.
func AcceptVersionHeader(v string) Header { return newKind(AcceptVersion, v) }

func HeartBeatHeader(v string) Header { return newKind(HeartBeat, v) }

func DestinationHeader(path string) Header { return newKind(Destination, path) }

func IDHeader(id string) Header { return newKind(ID, id) }

func VersionHeader(v string) Header { return newKind(Version, v) }

func SubscriptionHeader(id string) Header { return newKind(Subscription, id) }

func MessageIDHeader(id string) Header { return newKind(MessageID, id) }

func ContentLengthHeader(n string) Header { return newKind(ContentLength, n) }

func MessageHeader(text string) Header { return newKind(MessageText, text) }

func UserNameHeader(name string) Header { return newKind(UserName, name) }

func ContentTypeHeader(mime string) Header { return newKind(ContentType, mime) }

// CustomHeader is NewHeader under another name: a recognised name still
// yields its typed variant so identity stays name-based.
func CustomHeader(name, value string) Header { return NewHeader(name, value) }

// Kind returns the header variant.
func (h Header) Kind() Kind { return h.kind }

// Name returns the wire name of the header.
func (h Header) Name() string {
	if h.kind == Custom {
		return h.name
	}
	return kindNames[h.kind]
}

// Value returns the header value.
func (h Header) Value() string { return h.value }

// NameValue projects the header onto its wire pair.
func (h Header) NameValue() (string, string) { return h.Name(), h.value }

// Equal reports header identity: names compare, values do not.
func (h Header) Equal(o Header) bool { return h.Name() == o.Name() }

func (h Header) String() string { return h.Name() + ":" + h.value }

// Headers is an insertion-ordered set of headers unique by name.
// The zero value is an empty set ready to use. Copies are independent:
// mutating one never changes another.
type Headers struct {
	list []Header
}

// NewHeaders builds a set with Add semantics: when a name repeats, the
// first header wins.
func NewHeaders(hs ...Header) Headers {
	var set Headers
	for _, h := range hs {
		set.Add(h)
	}
	return set
}

func (s *Headers) index(name string) int {
	for i, h := range s.list {
		if h.Name() == name {
			return i
		}
	}
	return -1
}

// Add inserts h unless a header with the same name is already present.
// It reports whether h was inserted.
func (s *Headers) Add(h Header) bool {
	if s.index(h.Name()) >= 0 {
		return false
	}
	s.list = append(s.list[:len(s.list):len(s.list)], h)
	return true
}

// Set inserts h, replacing the value of an existing header with the same
// name while keeping its position.
func (s *Headers) Set(h Header) {
	if i := s.index(h.Name()); i >= 0 {
		list := slices.Clone(s.list)
		list[i] = h
		s.list = list
		return
	}
	s.list = append(s.list[:len(s.list):len(s.list)], h)
}

// Del removes the header with the given name, if any.
func (s *Headers) Del(name string) {
	if i := s.index(name); i >= 0 {
		s.list = append(s.list[:i:i], s.list[i+1:]...)
	}
}

// Get returns the value of the named header.
func (s Headers) Get(name string) (string, bool) {
	if i := s.index(name); i >= 0 {
		return s.list[i].value, true
	}
	return "", false
}

// Value returns the value of the named header or "" when it is absent.
func (s Headers) Value(name string) string {
	v, _ := s.Get(name)
	return v
}

// Contains reports whether a header with the same name as h is present.
func (s Headers) Contains(h Header) bool { return s.index(h.Name()) >= 0 }

// Len returns the number of distinct header names.
func (s Headers) Len() int { return len(s.list) }

// All returns the headers in insertion order.
func (s Headers) All() []Header {
	out := make([]Header, len(s.list))
	copy(out, s.list)
	return out
}

// Map returns the headers as a name/value map.
func (s Headers) Map() map[string]string {
	m := make(map[string]string, len(s.list))
	for _, h := range s.list {
		m[h.Name()] = h.value
	}
	return m
}
