package session

// MaxIDLength bounds identifiers accepted by ValidID.
const MaxIDLength = 200

// ValidID reports whether id is usable as a session identifier: 1 to
// MaxIDLength characters from [A-Za-z0-9_-]. Such ids are safe as file name
// components and as key suffixes in any backend.
func ValidID(id string) bool {
	if id == "" || len(id) > MaxIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}

// CheckID returns an ErrInvalidID describing why id is rejected, or nil.
func CheckID(id string) error {
	switch {
	case id == "":
		return ErrInvalidID.WithDetails("empty id")
	case len(id) > MaxIDLength:
		return ErrInvalidID.Detailf("id longer than %d bytes", MaxIDLength)
	case !ValidID(id):
		return ErrInvalidID.WithDetails("id contains characters outside [A-Za-z0-9_-]")
	}
	return nil
}
