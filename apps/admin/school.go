package main

import (
	"context"
	"fmt"
	"time"

	"github.com/simonmuehling/educafric-app-sub019/core/school"
)

// setPlan switches a school between the free and premium plans.
func (cli *commandLine) setPlan(schoolID, plan string) error {
	if plan != school.PlanFree && plan != school.PlanPremium {
		return fmt.Errorf("unknown plan %q", plan)
	}
	ctx := context.Background()
	sch, err := cli.schRepo.GetSchool(ctx, schoolID)
	if err != nil {
		return err
	}
	sch.Plan = plan
	sch.UpdatedAt = time.Now().UTC()
	if _, err = cli.schRepo.UpdateSchool(ctx, sch); err != nil {
		return err
	}
	fmt.Printf("%s is now on the %s plan\n", sch.Name, plan)
	return nil
}

func (cli *commandLine) purgeNotifications() error {
	cnt, err := cli.notifSvc.PurgeExpired(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("%d expired notifications deleted\n", cnt)
	return nil
}
