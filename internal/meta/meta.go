package meta

// Status is the load state of anything fetched from the content API. The
// four values are never conflated: an empty successful result is not the
// same thing as a pending one.
type Status string

const (
	Initial Status = "initial"
	Loading Status = "loading"
	Success Status = "success"
	Error   Status = "error"
)

func (s Status) Done() bool {
	return s == Success || s == Error
}
