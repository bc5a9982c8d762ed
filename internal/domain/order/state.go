package order

import "time"

// OrderState implements the state pattern for fulfilment status transitions.
type OrderState interface {
	Status() Status
	OnPaymentSucceeded(o *Order, at time.Time) (OrderState, error)
	OnShipped(o *Order) (OrderState, error)
	OnCancelled(o *Order) (OrderState, error)
}

func stateFor(s Status) OrderState {
	switch s {
	case StatusPaid:
		return paidState{}
	case StatusShipped:
		return shippedState{}
	case StatusCancelled:
		return cancelledState{}
	default:
		return pendingState{}
	}
}

type pendingState struct{}

func (pendingState) Status() Status { return StatusPending }

func (pendingState) OnPaymentSucceeded(o *Order, at time.Time) (OrderState, error) {
	o.PaymentStatus = PaymentPaid
	t := at.UTC()
	o.PaidAt = &t
	return paidState{}, nil
}

func (pendingState) OnShipped(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (pendingState) OnCancelled(*Order) (OrderState, error) {
	return cancelledState{}, nil
}

type paidState struct{}

func (paidState) Status() Status { return StatusPaid }

func (paidState) OnPaymentSucceeded(*Order, time.Time) (OrderState, error) {
	return paidState{}, nil
}

func (paidState) OnShipped(*Order) (OrderState, error) {
	return shippedState{}, nil
}

func (paidState) OnCancelled(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

type shippedState struct{}

func (shippedState) Status() Status { return StatusShipped }

func (shippedState) OnPaymentSucceeded(*Order, time.Time) (OrderState, error) {
	return shippedState{}, nil
}

func (shippedState) OnShipped(*Order) (OrderState, error) {
	return shippedState{}, nil
}

func (shippedState) OnCancelled(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

type cancelledState struct{}

func (cancelledState) Status() Status { return StatusCancelled }

func (cancelledState) OnPaymentSucceeded(*Order, time.Time) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancelledState) OnShipped(*Order) (OrderState, error) {
	return nil, ErrInvalidStateTransition
}

func (cancelledState) OnCancelled(*Order) (OrderState, error) {
	return cancelledState{}, nil
}

// MarkPaid records a successful payment. changed is false when the order
// already carried a payment, which makes redelivered events a no-op.
func (o *Order) MarkPaid(at time.Time) (changed bool, err error) {
	if o.PaymentStatus != PaymentUnpaid {
		if o.Status == StatusCancelled {
			return false, ErrInvalidStateTransition
		}
		return false, nil
	}
	next, err := stateFor(o.Status).OnPaymentSucceeded(o, at)
	if err != nil {
		return false, err
	}
	o.Status = next.Status()
	o.touch()
	return true, nil
}

func (o *Order) MarkShipped() error {
	next, err := stateFor(o.Status).OnShipped(o)
	if err != nil {
		return err
	}
	o.Status = next.Status()
	o.touch()
	return nil
}

func (o *Order) Cancel() error {
	next, err := stateFor(o.Status).OnCancelled(o)
	if err != nil {
		return err
	}
	o.Status = next.Status()
	o.touch()
	return nil
}

func (o *Order) Refund() error {
	if o.PaymentStatus != PaymentPaid {
		return ErrInvalidStateTransition
	}
	o.PaymentStatus = PaymentRefunded
	o.touch()
	return nil
}
