package executor

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/autoscaling"
	"github.com/aws/aws-sdk-go/service/autoscaling/autoscalingiface"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/caraveld/caravel"
)

const (
	// Rolling refresh preferences; half the fleet stays in service
	// while instances warm up for five minutes.
	refreshMinHealthyPercentage = 50
	refreshInstanceWarmupSec    = 300
)

// ASG rolls out versions by rotating the instances of an Auto Scaling
// Group: point the group's launch template at the target image, then
// start a rolling instance refresh and report its progress.
type ASG struct {
	autoscaling autoscalingiface.AutoScalingAPI
	ec2         ec2iface.EC2API
	logger      log.Logger
}

func NewASG(sess *session.Session, logger log.Logger) *ASG {
	return &ASG{
		autoscaling: autoscaling.New(sess),
		ec2:         ec2.New(sess),
		logger:      logger,
	}
}

func (a *ASG) Apply(ctx context.Context, env caravel.Environment, v caravel.Version, image string) (Handle, error) {
	group, err := a.describeGroup(ctx, env.Fleet)
	if err != nil {
		return Handle{}, err
	}
	if group.LaunchTemplate == nil || group.LaunchTemplate.LaunchTemplateId == nil {
		return Handle{}, errors.Errorf("fleet %s has no launch template", env.Fleet)
	}
	templateID := *group.LaunchTemplate.LaunchTemplateId

	// Re-use an existing template version that already runs this image
	// (the common case when rolling back); otherwise cut a new one.
	templateVersion, err := a.findTemplateVersion(ctx, templateID, image)
	if err != nil {
		return Handle{}, err
	}
	if templateVersion == 0 {
		templateVersion, err = a.createTemplateVersion(ctx, templateID, env, image)
		if err != nil {
			return Handle{}, err
		}
		a.logger.Log("fleet", env.Fleet, "launch_template", templateID, "created_version", templateVersion)
	} else {
		a.logger.Log("fleet", env.Fleet, "launch_template", templateID, "reused_version", templateVersion)
	}

	if _, err := a.autoscaling.UpdateAutoScalingGroupWithContext(ctx, &autoscaling.UpdateAutoScalingGroupInput{
		AutoScalingGroupName: aws.String(env.Fleet),
		LaunchTemplate: &autoscaling.LaunchTemplateSpecification{
			LaunchTemplateId: aws.String(templateID),
			Version:          aws.String(strconv.FormatInt(templateVersion, 10)),
		},
	}); err != nil {
		return Handle{}, errors.Wrapf(err, "updating fleet %s", env.Fleet)
	}

	refresh, err := a.autoscaling.StartInstanceRefreshWithContext(ctx, &autoscaling.StartInstanceRefreshInput{
		AutoScalingGroupName: aws.String(env.Fleet),
		Strategy:             aws.String("Rolling"),
		Preferences: &autoscaling.RefreshPreferences{
			MinHealthyPercentage: aws.Int64(refreshMinHealthyPercentage),
			InstanceWarmup:       aws.Int64(refreshInstanceWarmupSec),
		},
	})
	if err != nil {
		return Handle{}, errors.Wrapf(err, "starting instance refresh for fleet %s", env.Fleet)
	}

	a.logger.Log("fleet", env.Fleet, "version", v, "refresh", *refresh.InstanceRefreshId)
	return Handle{
		Environment: env.Name,
		Fleet:       env.Fleet,
		Version:     v,
		Ref:         *refresh.InstanceRefreshId,
	}, nil
}

func (a *ASG) Poll(ctx context.Context, h Handle) (Status, error) {
	out, err := a.autoscaling.DescribeInstanceRefreshesWithContext(ctx, &autoscaling.DescribeInstanceRefreshesInput{
		AutoScalingGroupName: aws.String(h.Fleet),
		InstanceRefreshIds:   []*string{aws.String(h.Ref)},
	})
	if err != nil {
		return Status{}, errors.Wrap(err, "describing instance refresh")
	}
	if len(out.InstanceRefreshes) == 0 {
		return Status{}, errors.Errorf("instance refresh %s not found", h.Ref)
	}

	refresh := out.InstanceRefreshes[0]
	switch aws.StringValue(refresh.Status) {
	case autoscaling.InstanceRefreshStatusSuccessful:
		return Status{State: StateCompleted, Percent: 100}, nil
	case autoscaling.InstanceRefreshStatusFailed, autoscaling.InstanceRefreshStatusCancelled:
		return Status{
			State:  StateFailed,
			Reason: fmt.Sprintf("instance refresh %s: %s", aws.StringValue(refresh.Status), aws.StringValue(refresh.StatusReason)),
		}, nil
	default:
		return Status{
			State:   StateInProgress,
			Percent: int(aws.Int64Value(refresh.PercentageComplete)),
		}, nil
	}
}

func (a *ASG) describeGroup(ctx context.Context, fleet string) (*autoscaling.Group, error) {
	out, err := a.autoscaling.DescribeAutoScalingGroupsWithContext(ctx, &autoscaling.DescribeAutoScalingGroupsInput{
		AutoScalingGroupNames: []*string{aws.String(fleet)},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "describing fleet %s", fleet)
	}
	if len(out.AutoScalingGroups) == 0 {
		return nil, errors.Errorf("fleet %s not found", fleet)
	}
	return out.AutoScalingGroups[0], nil
}

// findTemplateVersion returns the number of a launch template version
// whose user data already references the image, or 0 if none does.
func (a *ASG) findTemplateVersion(ctx context.Context, templateID, image string) (int64, error) {
	out, err := a.ec2.DescribeLaunchTemplateVersionsWithContext(ctx, &ec2.DescribeLaunchTemplateVersionsInput{
		LaunchTemplateId: aws.String(templateID),
		MaxResults:       aws.Int64(100),
	})
	if err != nil {
		return 0, errors.Wrap(err, "describing launch template versions")
	}
	for _, version := range out.LaunchTemplateVersions {
		if version.LaunchTemplateData == nil || version.LaunchTemplateData.UserData == nil {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(*version.LaunchTemplateData.UserData)
		if err != nil {
			continue
		}
		if strings.Contains(string(decoded), image) {
			return aws.Int64Value(version.VersionNumber), nil
		}
	}
	return 0, nil
}

func (a *ASG) createTemplateVersion(ctx context.Context, templateID string, env caravel.Environment, image string) (int64, error) {
	out, err := a.ec2.CreateLaunchTemplateVersionWithContext(ctx, &ec2.CreateLaunchTemplateVersionInput{
		LaunchTemplateId: aws.String(templateID),
		SourceVersion:    aws.String("$Latest"),
		LaunchTemplateData: &ec2.RequestLaunchTemplateData{
			UserData: aws.String(userData(env, image)),
		},
	})
	if err != nil {
		return 0, errors.Wrap(err, "creating launch template version")
	}
	return aws.Int64Value(out.LaunchTemplateVersion.VersionNumber), nil
}

// userData generates the boot script an instance runs to replace its
// application container with the target image.
func userData(env caravel.Environment, image string) string {
	script := fmt.Sprintf(`#!/bin/bash
set -e

docker pull %[1]s
docker stop app || true
docker rm app || true
docker run -d \
  --name app \
  --restart unless-stopped \
  -p 3000:3000 \
  -e NODE_ENV=%[2]s \
  %[1]s
`, image, env.Name)
	return base64.StdEncoding.EncodeToString([]byte(script))
}
