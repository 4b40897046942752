package appdb

func dest(name string) Arg      { return Arg{Name: name, Required: true} }
func opt(name string) Arg       { return Arg{Name: name} }
func num(name string) Arg       { return Arg{Name: name, Type: "int"} }
func reqNum(name string) Arg    { return Arg{Name: name, Type: "int", Required: true} }
func variadic(name string) *App { return &App{Name: name, Variadic: true} }

// builtinApps returns a fresh copy of the built-in application list.
func builtinApps() []*App {
	return []*App{
		// --- Call control ---
		{Name: "Answer", Args: []Arg{num("delay")}},
		{Name: "Hangup", Args: []Arg{num("causecode")}},
		{Name: "Busy", Args: []Arg{num("timeout")}},
		{Name: "Congestion", Args: []Arg{num("timeout")}},
		{Name: "Ringing"},
		{Name: "Progress"},
		{Name: "Wait", Args: []Arg{reqNum("seconds")}},
		{Name: "WaitExten", Args: []Arg{num("seconds"), opt("options")}},
		{Name: "Dial", Args: []Arg{dest("devices"), num("timeout"), opt("options"), opt("url")},
			Sets: map[string][]string{
				"DIALSTATUS": {"CHANUNAVAIL", "CONGESTION", "NOANSWER", "BUSY", "ANSWER", "CANCEL", "DONTCALL", "TORTURE", "INVALIDARGS"},
			}},
		{Name: "Transfer", Args: []Arg{dest("dest")},
			Sets: map[string][]string{"TRANSFERSTATUS": {"SUCCESS", "FAILURE", "UNSUPPORTED"}}},
		{Name: "ChanIsAvail", Args: []Arg{dest("technology"), opt("options")},
			Sets: map[string][]string{"AVAILSTATUS": {"0", "1", "2", "3", "4", "5", "6", "7", "8"}}},
		{Name: "Pickup", Args: []Arg{opt("targets")}},
		{Name: "Queue", Args: []Arg{dest("queuename"), opt("options"), opt("url"), opt("announceoverride"), num("timeout")},
			Sets: map[string][]string{
				"QUEUESTATUS": {"TIMEOUT", "FULL", "JOINEMPTY", "LEAVEEMPTY", "JOINUNAVAIL", "LEAVEUNAVAIL", "CONTINUE"},
			}},
		{Name: "ConfBridge", Args: []Arg{dest("conference"), opt("bridge_profile"), opt("user_profile"), opt("menu")}},
		{Name: "MeetMe", Args: []Arg{opt("confno"), opt("options"), opt("pin")}},
		{Name: "Page", Args: []Arg{dest("technology"), opt("options"), num("timeout")}},

		// --- Media ---
		{Name: "Playback", Args: []Arg{dest("filenames"), opt("options")},
			Sets: map[string][]string{"PLAYBACKSTATUS": {"SUCCESS", "FAILED"}}},
		{Name: "Background", Args: []Arg{dest("filenames"), opt("options"), opt("langoverride"), opt("context")}},
		{Name: "Record", Args: []Arg{dest("filename"), num("silence"), num("maxduration"), opt("options")},
			Sets: map[string][]string{"RECORD_STATUS": {"DTMF", "SILENCE", "SKIP", "TIMEOUT", "HANGUP", "ERROR"}}},
		{Name: "SayDigits", Args: []Arg{dest("digits")}},
		{Name: "SayNumber", Args: []Arg{dest("digits"), opt("gender")}},
		{Name: "Read", Args: []Arg{dest("variable"), opt("filenames"), num("maxdigits"), opt("options"), num("attempts"), num("timeout")},
			Sets: map[string][]string{"READSTATUS": {"OK", "ERROR", "HANGUP", "INTERRUPTED", "SKIPPED", "TIMEOUT"}}},
		{Name: "Echo"},
		{Name: "MusicOnHold", Args: []Arg{opt("class"), num("duration")}},

		// --- Voicemail ---
		{Name: "VoiceMail", Args: []Arg{dest("mailbox"), opt("options")},
			Sets: map[string][]string{"VMSTATUS": {"SUCCESS", "USEREXIT", "FAILED"}}},
		{Name: "VoiceMailMain", Args: []Arg{opt("mailbox"), opt("options")}},

		// --- Variables and logging ---
		variadic("Set"),
		variadic("MSet"),
		variadic("NoOp"),
		variadic("Verbose"),
		{Name: "Log", Args: []Arg{
			{Name: "level", Required: true, Type: "enum", Values: []string{"ERROR", "WARNING", "NOTICE", "DEBUG", "VERBOSE", "DTMF"}},
			dest("message"),
		}},
		{Name: "ExecIf", Args: []Arg{dest("expression"), opt("appiftrue"), opt("appiffalse")}},
		{Name: "Exec", Args: []Arg{dest("arguments")}},
		{Name: "System", Args: []Arg{dest("command")},
			Sets: map[string][]string{"SYSTEMSTATUS": {"FAILURE", "SUCCESS", "APPERROR"}}},
		{Name: "Authenticate", Args: []Arg{dest("password"), opt("options"), num("maxdigits"), opt("prompt")}},
		{Name: "DISA", Args: []Arg{dest("passcode"), opt("context"), opt("cid"), opt("mailbox"), opt("options")}},

		// --- Flow control (normally written as language constructs) ---
		variadic("Goto"),
		variadic("GotoIf"),
		variadic("GotoIfTime"),
		variadic("Gosub"),
		variadic("GosubIf"),
		variadic("Return"),
		variadic("Macro"),
		variadic("MacroIf"),
		variadic("MacroExit"),
		variadic("While"),
		variadic("EndWhile"),
		variadic("ExitWhile"),
		variadic("ContinueWhile"),
		variadic("Random"),
		variadic("ExecIfTime"),
	}
}
