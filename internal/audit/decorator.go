package audit

import "context"

// Op is an operation that can be wrapped by Audited.
type Op[In, Out any] func(ctx context.Context, in In) (Out, error)

// Describe extracts the entity id and payload snapshot for an audit record.
// It sees the zero Out when the operation failed.
type Describe[In, Out any] func(in In, out Out) (entityID string, payload any)

// FailurePayload is recorded with GENERIC_FAILURE when a wrapped operation errors.
type FailurePayload struct {
	Operation Action `json:"operation"`
	Error     string `json:"error"`
	Input     any    `json:"input,omitempty"`
}

// Audited wraps op so that every call appends a record: action on success,
// GENERIC_FAILURE on error. The operation's own result is returned untouched.
func Audited[In, Out any](sink *Sink, action Action, entity EntityType, op Op[In, Out], describe Describe[In, Out]) Op[In, Out] {
	return func(ctx context.Context, in In) (Out, error) {
		out, err := op(ctx, in)

		var (
			id      string
			payload any
		)
		if describe != nil {
			id, payload = describe(in, out)
		}
		if err != nil {
			sink.Append(ctx, Entry{
				Action:     ActionGenericFailure,
				EntityType: entity,
				EntityID:   id,
				Payload:    FailurePayload{Operation: action, Error: err.Error(), Input: payload},
				Actor:      ActorFromContext(ctx),
			})
			return out, err
		}
		sink.Append(ctx, Entry{
			Action:     action,
			EntityType: entity,
			EntityID:   id,
			Payload:    payload,
			Actor:      ActorFromContext(ctx),
		})
		return out, nil
	}
}
