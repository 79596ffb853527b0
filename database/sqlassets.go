package sqlassets

import _ "embed"

//go:embed controlplane/clinics.sql
var ClinicsSQL string

//go:embed controlplane/control_users.sql
var ControlUsersSQL string
