package sequencetree

// SequenceItems is the payload constraint for blocks stored in a
// Tree: something that knows its own length, can be split at an
// offset into two values of the same type, and can have another value
// of the same type appended onto it. String satisfies this for text;
// other sequence payloads (e.g. a list of JSON values) could satisfy
// it too, which is why the tree is generic over it rather than
// hard-coded to text.
type SequenceItems[T any] interface {
	Len() int
	Split(offset int) (T, T)
	Merge(other T) T
}

// StringItems is the SequenceItems implementation backing the text
// CRDT: a block of contiguous UTF-8 bytes.
type StringItems string

func (s StringItems) Len() int { return len(s) }

func (s StringItems) Split(offset int) (StringItems, StringItems) {
	return s[:offset], s[offset:]
}

func (s StringItems) Merge(other StringItems) StringItems {
	return s + other
}
