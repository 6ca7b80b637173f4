package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var noRestore = map[string]string{skipRestore: "true"}

// readSecret returns the flag value or, when empty, the first line of stdin.
func readSecret(flagValue, prompt string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read %s: %w", strings.TrimSuffix(strings.ToLower(prompt), ": "), err)
	}
	return strings.TrimSpace(line), nil
}

func init() {
	var password string
	loginCmd := &cobra.Command{
		Use:         "login MAIL",
		Short:       "Sign in and store the session",
		Args:        cobra.ExactArgs(1),
		Annotations: noRestore,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readSecret(password, "Password: ")
			if err != nil {
				return err
			}
			s, err := application.Login(ctxOf(cmd), args[0], pw)
			if err != nil {
				return err
			}
			return output(s.User, func() {
				fmt.Printf("Signed in as %s <%s>\n", s.DisplayName(), s.MailAddress())
			})
		},
	}
	loginCmd.Flags().StringVarP(&password, "password", "p", "", "Password (read from stdin when omitted)")
	rootCmd.AddCommand(loginCmd)

	var name, signupPassword string
	registerCmd := &cobra.Command{
		Use:         "register MAIL",
		Short:       "Create an account; a confirmation code is mailed",
		Args:        cobra.ExactArgs(1),
		Annotations: noRestore,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readSecret(signupPassword, "Password: ")
			if err != nil {
				return err
			}
			msg, err := application.Register(ctxOf(cmd), name, args[0], pw)
			if err != nil {
				return err
			}
			return output(map[string]string{"message": msg}, func() {
				fmt.Println(msg)
				fmt.Println("Run `recipe-companion confirm` with the code from the mail.")
			})
		},
	}
	registerCmd.Flags().StringVarP(&name, "name", "n", "", "Display name (required)")
	registerCmd.Flags().StringVarP(&signupPassword, "password", "p", "", "Password (read from stdin when omitted)")
	_ = registerCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(registerCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:         "confirm MAIL CODE",
		Short:       "Confirm an account with the mailed one-time code",
		Args:        cobra.ExactArgs(2),
		Annotations: noRestore,
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := application.Confirm(ctxOf(cmd), args[0], args[1])
			if err != nil {
				return err
			}
			return output(map[string]string{"message": msg}, func() { fmt.Println(msg) })
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:         "logout",
		Short:       "Forget the stored session",
		Args:        cobra.NoArgs,
		Annotations: noRestore,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := application.Logout(ctxOf(cmd)); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "Signed out.")
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := application.Session(); !ok {
				return fmt.Errorf("not signed in; run `recipe-companion login`")
			}
			u, err := application.WhoAmI(ctxOf(cmd))
			if err != nil {
				return err
			}
			return output(u, func() {
				fmt.Printf("%s <%s>\n", u.Name, u.Mail)
				fmt.Printf("id: %s\n", u.ID)
				fmt.Printf("own recipes: %d, saved recipes: %d\n", len(u.RecipesIDs), len(u.SavedRecipesIDs))
			})
		},
	})
}
