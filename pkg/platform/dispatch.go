package platform

import "sync"

var (
	dispatchMu   sync.RWMutex
	dispatchFunc func(callback func())
)

// RegisterDispatch sets the dispatch function used to schedule callbacks on
// the app's main thread. The function must run callbacks one at a time, in
// submission order.
func RegisterDispatch(fn func(callback func())) {
	dispatchMu.Lock()
	dispatchFunc = fn
	dispatchMu.Unlock()
}

// DispatchRegistered reports whether a dispatch function is installed.
func DispatchRegistered() bool {
	dispatchMu.RLock()
	defer dispatchMu.RUnlock()
	return dispatchFunc != nil
}

// Dispatch schedules a callback to run on the main thread.
// Returns true if the callback was successfully scheduled, false if no dispatch function
// is registered or the callback is nil.
func Dispatch(callback func()) bool {
	dispatchMu.RLock()
	fn := dispatchFunc
	dispatchMu.RUnlock()
	if fn == nil || callback == nil {
		return false
	}
	fn(callback)
	return true
}
