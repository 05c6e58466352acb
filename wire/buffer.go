package wire

import "github.com/cshekharsharma/cascade/internal/wireutil"

// EncodeDocument frames the three top-level regions of a serialized
// document — the view cache snapshot, the client registry, and the
// operation log — each prefixed with a varint length, in that fixed
// order. This is the buffer Doc.Serialize produces and Doc.Load/Lazy
// consume.
func EncodeDocument(viewCacheBytes, clientRegistryBytes, operationLogBytes []byte) []byte {
	buf := make([]byte, 0, len(viewCacheBytes)+len(clientRegistryBytes)+len(operationLogBytes)+24)
	buf = wireutil.AppendBytes(buf, viewCacheBytes)
	buf = wireutil.AppendBytes(buf, clientRegistryBytes)
	buf = wireutil.AppendBytes(buf, operationLogBytes)
	return buf
}

// DecodeDocument splits a buffer produced by EncodeDocument back into
// its three regions.
func DecodeDocument(buf []byte) (viewCacheBytes, clientRegistryBytes, operationLogBytes []byte, err error) {
	viewCacheBytes, n, err := wireutil.ReadBytes(buf)
	if err != nil {
		return nil, nil, nil, malformedf("truncated view cache region: %s", err)
	}
	offset := n

	clientRegistryBytes, n, err = wireutil.ReadBytes(buf[offset:])
	if err != nil {
		return nil, nil, nil, malformedf("truncated client registry region: %s", err)
	}
	offset += n

	operationLogBytes, n, err = wireutil.ReadBytes(buf[offset:])
	if err != nil {
		return nil, nil, nil, malformedf("truncated operation log region: %s", err)
	}

	return viewCacheBytes, clientRegistryBytes, operationLogBytes, nil
}
