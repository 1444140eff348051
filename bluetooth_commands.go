package mapper

import (
	"context"
	"encoding/json"
)

type simulateAdapterParams struct {
	Context string `json:"context"`
	State   string `json:"state"`
}

// bluetoothMethods maps the bluetooth.* sub-operations this mediator
// understands onto their BluetoothEmulation CDP method names;
// bluetoothForward rejects any other op with
// ErrorCodeUnsupportedOperation.
var bluetoothMethods = map[string]string{
	"simulateAdapter":                "BluetoothEmulation.enable",
	"disableSimulation":              "BluetoothEmulation.disable",
	"simulateCentral":                "BluetoothEmulation.setSimulatedCentralState",
	"simulatePreconnectedPeripheral": "BluetoothEmulation.simulatePreconnectedPeripheral",
	"simulateGattConnectionResponse": "BluetoothEmulation.simulateGATTOperationResponse",
	"simulateGattDisconnection":      "BluetoothEmulation.simulateGATTDisconnection",
}

// cmdBluetoothSimulateAdapter implements bluetooth.simulateAdapter by
// enabling the CDP BluetoothEmulation domain on the target's session
// with the requested simulation state. It is the only bluetooth.*
// method command.go's dispatch table routes; the other bluetoothMethods
// entries share the same raw-forward shape through bluetoothForward.
func (s *Session) cmdBluetoothSimulateAdapter(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p simulateAdapterParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	return s.bluetoothForward(ctx, p.Context, "simulateAdapter", raw)
}

// bluetoothForward resolves contextID's CDP session and forwards op's
// params verbatim to its BluetoothEmulation method, the escape-hatch
// shape cdp.sendCommand also uses (cdp_commands.go), scoped to the
// bluetooth domain's naming.
func (s *Session) bluetoothForward(ctx context.Context, contextID, op string, params json.RawMessage) (interface{}, error) {
	method, ok := bluetoothMethods[op]
	if !ok {
		return nil, NewError(ErrorCodeUnsupportedOperation, "unsupported bluetooth operation: "+op)
	}
	sess, err := s.requireSession(contextID)
	if err != nil {
		return nil, err
	}
	var res rawResult
	if err := sess.Execute(ctx, method, rawParams(params), &res); err != nil {
		return nil, NewError(ErrorCodeUnsupportedOperation, err.Error())
	}
	return map[string]interface{}{}, nil
}
