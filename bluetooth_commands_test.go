package mapper

import "testing"

func TestBluetoothMethodsCoversSimulateAdapter(t *testing.T) {
	method, ok := bluetoothMethods["simulateAdapter"]
	if !ok {
		t.Fatal("bluetoothMethods missing simulateAdapter")
	}
	if method != "BluetoothEmulation.enable" {
		t.Errorf("bluetoothMethods[simulateAdapter] = %q, want BluetoothEmulation.enable", method)
	}
}

func TestBluetoothForwardRejectsUnknownOperation(t *testing.T) {
	s := &Session{contextTargets: map[string]*CdpTarget{}, bcStorage: nil}
	_, err := s.bluetoothForward(nil, "ctx-1", "notARealOperation", nil)
	if err == nil {
		t.Fatal("bluetoothForward with an unknown operation returned no error")
	}
	bidiErr, ok := err.(*BiDiError)
	if !ok {
		t.Fatalf("bluetoothForward error type = %T, want *BiDiError", err)
	}
	if bidiErr.Code != ErrorCodeUnsupportedOperation {
		t.Errorf("bluetoothForward unknown-operation error code = %v, want %v", bidiErr.Code, ErrorCodeUnsupportedOperation)
	}
}
