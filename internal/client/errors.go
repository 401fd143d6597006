package client

// CloseError reports a failed connection teardown. Both the API connection
// and the owned tunnel are always closed independently; when both fail the
// connection error is the one surfaced and the tunnel error is kept as a
// secondary cause.
type CloseError struct {
	Conn   error
	Tunnel error
}

func (e *CloseError) Error() string {
	switch {
	case e.Conn != nil && e.Tunnel != nil:
		return "close connection: " + e.Conn.Error() + " (tunnel: " + e.Tunnel.Error() + ")"
	case e.Conn != nil:
		return "close connection: " + e.Conn.Error()
	case e.Tunnel != nil:
		return "close tunnel: " + e.Tunnel.Error()
	default:
		return "close connection"
	}
}

func (e *CloseError) Unwrap() []error {
	var errs []error
	if e.Conn != nil {
		errs = append(errs, e.Conn)
	}
	if e.Tunnel != nil {
		errs = append(errs, e.Tunnel)
	}
	return errs
}
