package action

import (
	"context"
	"encoding/json"
	"fmt"

	xerrors "ActionKit-Chain/internal/errors"
	"ActionKit-Chain/internal/wallet"
)

// run invokes the handler and folds every failure into the result string.
// The returned error is informational only and never reaches the caller.
func run(ctx context.Context, entry Entry, w wallet.Wallet, args map[string]any) (result string, failure error) {
	defer func() {
		if rec := recover(); rec != nil {
			failure = fmt.Errorf("panic: %v", rec)
			result = Render(entry.Name, failure)
		}
	}()

	out, err := entry.Invoke(ctx, w, args)
	if err != nil {
		return Render(entry.Name, err), err
	}
	return out, nil
}

// Render produces the failure string for err. External operation errors
// read "Error <op>: <cause>"; anything else names the action.
func Render(action string, err error) string {
	if e, ok := xerrors.From(err); ok && e.Code() == xerrors.CodeExternalOperation {
		if cause := e.Cause(); cause != nil {
			return fmt.Sprintf("Error %s: %v", e.Message(), cause)
		}
		return "Error " + e.Message()
	}
	if e, ok := xerrors.From(err); ok {
		if cause := e.Cause(); cause != nil {
			return fmt.Sprintf("Error executing %s: %s: %v", action, e.Message(), cause)
		}
		return fmt.Sprintf("Error executing %s: %s", action, e.Message())
	}
	return fmt.Sprintf("Error executing %s: %v", action, err)
}

// JSON renders v as indented JSON. Encoding failures become a JSON error
// object so callers always receive parseable output.
func JSON(v any) string {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fallback, _ := json.Marshal(map[string]string{"error": "encode result", "message": err.Error()})
		return string(fallback)
	}
	return string(out)
}
