package root

import (
	"github.com/clinica-io/clinica-backend/apps/cli/cmd/bootstrap"
	cliniccmd "github.com/clinica-io/clinica-backend/apps/cli/cmd/clinic"
	migratecmd "github.com/clinica-io/clinica-backend/apps/cli/cmd/migrate"
)

func init() {
	Root().AddCommand(bootstrap.Command())
	Root().AddCommand(cliniccmd.Command())
	Root().AddCommand(migratecmd.Command())
}
