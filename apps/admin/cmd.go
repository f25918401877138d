package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/simonmuehling/educafric-app-sub019/core/notification"
	"github.com/simonmuehling/educafric-app-sub019/core/school"
	"github.com/simonmuehling/educafric-app-sub019/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sqlx.DB
	std      *log.Logger
	usrRepo  user.Repository
	schRepo  school.Repository
	notifSvc notification.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command (up, down, status, version...) on the database")
	fmt.Println("  adduser -username USERNAME -email EMAIL [-name NAME] [-school ID] [-roles R1,R2] [-admin] - create or update a user")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Println("  setplan -school ID -plan free|premium - change the plan of a school")
	fmt.Println("  purgenotifications - delete expired notifications")
}

func (cli *commandLine) promptPassword(fs *flag.FlagSet) (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserName := addUserCmd.String("name", "", "The user's display name.")
	addUserSchool := addUserCmd.String("school", "", "ID of the school the user belongs to.")
	addUserRoles := addUserCmd.String("roles", "", "Comma separated roles, e.g. director:,teacher:")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant every role.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	setPlanCmd := flag.NewFlagSet("setplan", flag.ContinueOnError)
	setPlanSchool := setPlanCmd.String("school", "", "ID of the school.")
	setPlanPlan := setPlanCmd.String("plan", "", "free or premium.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserUname == "" && *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(addUserCmd)
		if err != nil {
			return err
		}
		return cli.addUser(addUserParams{
			name:     *addUserName,
			uname:    *addUserUname,
			email:    *addUserEmail,
			schoolID: *addUserSchool,
			roles:    splitRoles(*addUserRoles),
			isAdmin:  *addUserAdmin,
		}, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(resetPasswordCmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "setplan":
		if err := setPlanCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *setPlanSchool == "" || *setPlanPlan == "" {
			setPlanCmd.Usage()
			return errHelp
		}
		return cli.setPlan(*setPlanSchool, *setPlanPlan)

	case "purgenotifications":
		return cli.purgeNotifications()

	default:
		cli.printUsage()
		return errHelp
	}
}

func splitRoles(s string) []string {
	if s == "" {
		return nil
	}
	var roles []string
	for _, role := range strings.Split(s, ",") {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}
