// Package serialization provides the binary stream used to persist network
// layers, and the model file that wraps a serialized network.
//
// Layers write themselves field by field through a Writer and read
// themselves back through a Reader. Every field is fixed-width binary in the
// writer's byte order (the platform's native order unless configured
// otherwise). A Reader is told, on each multi-byte read, whether the stream
// was written with the opposite byte order; when it was, the bytes of every
// field are reversed.
//
//	Model file structure:
//	  [4 bytes: Magic "SQNT"]
//	  [4 bytes: Version (uint32, writer's byte order)]
//	  [4 bytes: Flags (uint32)]
//	  [8 bytes: Header Size (uint64)]
//	  [Header: JSON metadata]
//	  [32 bytes: SHA-256 of the payload]
//	  [8 bytes: Payload Size (uint64)]
//	  [Payload: layer stream]
//
// The version field doubles as a byte-order mark: a reader that sees the
// version byte-reversed knows the file came from a platform of the other
// endianness.
//
// Example usage:
//
//	var buf bytes.Buffer
//	w := serialization.NewWriter(&buf)
//	if err := w.Int32(halfX); err != nil {
//	    return err
//	}
//
//	r := serialization.NewReader(&buf)
//	halfX, err := r.Int32(swap)
package serialization
