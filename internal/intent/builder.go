package intent

// Command is the payload Stage C builds for system/set/<service>.
type Command struct {
	Device  string `json:"device"`
	Type    string `json:"type"`
	ID      int    `json:"id"`
	State   *bool  `json:"state,omitempty"`
	Enable  *bool  `json:"enable,omitempty"`
	Command string `json:"command,omitempty"`
	Speed   *int   `json:"speed,omitempty"`
}

var actuatorBoolIntents = map[Intent]bool{On: true, Off: false}
var sensorBoolIntents = map[Intent]bool{Enable: true, Disable: false}

// motionCommand maps FORWARD/BACKWARD/STOP to the OPEN/CLOSE/STOP verb
// system/set expects, per spec.md §4.10's mapping. command_builder.py
// never implements motion — ON/OFF and ENABLE/DISABLE are its whole
// vocabulary — so this branch has no direct Python analogue; it is
// built from spec.md's own rule, in the same builder idiom.
var motionCommand = map[Intent]string{Forward: "OPEN", Backward: "CLOSE", Stop: "STOP"}

// Build implements Stage C: from an (intent, target) pair, produce the
// system/set payload. Returns nil when the intent does not apply to
// the target's component type (e.g. ENABLE against an actuator).
func Build(in Intent, target *Target) *Command {
	if in == Unknown || target == nil {
		return nil
	}

	switch target.Type {
	case "sensor":
		enable, ok := sensorBoolIntents[in]
		if !ok {
			return nil
		}
		return &Command{Device: target.Device, Type: "sensor", ID: target.ID, Enable: &enable}

	case "actuator":
		if verb, ok := motionCommand[in]; ok {
			cmd := &Command{Device: target.Device, Type: "actuator", ID: target.ID, Command: verb}
			if verb == "OPEN" || verb == "CLOSE" {
				speed := 100
				cmd.Speed = &speed
			}
			return cmd
		}
		if state, ok := actuatorBoolIntents[in]; ok {
			return &Command{Device: target.Device, Type: "actuator", ID: target.ID, State: &state}
		}
		return nil

	default:
		return nil
	}
}
