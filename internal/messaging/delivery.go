package messaging

// Acknowledger settles a single delivery. The delivery tag is owned
// exclusively by the worker that received the message.
type Acknowledger interface {
	Ack() error
	Nack(requeue bool) error
}

// Delivery is one message handed to a consumer, decoupled from the broker
// library so the worker runtime can be driven by fakes in tests.
type Delivery struct {
	Body        []byte
	RoutingKey  string
	Redelivered bool
	Headers     map[string]any
	Acker       Acknowledger
}

func (d Delivery) Ack() error {
	return d.Acker.Ack()
}

func (d Delivery) Nack(requeue bool) error {
	return d.Acker.Nack(requeue)
}

// HeaderInt reads an integer header, tolerating the numeric types AMQP
// tables deserialize to.
func (d Delivery) HeaderInt(key string) int {
	switch v := d.Headers[key].(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
