package microchan

// Marshaller is anything that can be represented in binary.
type Marshaller interface {
	Marshal() ([]byte, error)
}

// Persistent is implemented by every model kept in a bucket. Models
// serialize themselves with MarshalBinary and UnmarshalBinary.
type Persistent interface {
	Marshaller
	Unmarshal([]byte) error
}

// Validater is any struct that can be validated. Buckets refuse to save a
// model that does not validate.
type Validater interface {
	Validate() error
}
