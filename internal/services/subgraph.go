package services

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/machinebox/graphql"

	"alive-keeper/internal/models"
)

const referralStatsQuery = `
query GetUserReferralStats($userId: Bytes!) {
  user(id: $userId) {
    level1ReferralCount
    level2ReferralCount
    level1TotalRewards
    level2TotalRewards
    totalRewards
  }
}`

const referralListQuery = `
query GetUserReferralList($userId: Bytes!) {
  user(id: $userId) {
    level1Referrals(first: 100, orderBy: timestamp, orderDirection: desc) {
      id
      invitee { id level1ReferralCount }
      rewardAmount
      timestamp
    }
    level2Referrals(first: 100, orderBy: timestamp, orderDirection: desc) {
      id
      invitee { id }
      intermediary { id }
      rewardAmount
      timestamp
    }
  }
}`

// ReferralSource serves referral data for an address.
type ReferralSource interface {
	ReferralStats(ctx context.Context, address string) (*models.ReferralStats, error)
	ReferralList(ctx context.Context, address string) (*models.ReferralList, error)
}

// SubgraphClient queries the referral indexer. The indexer keys accounts
// by lower-cased address; an unknown account yields empty results.
type SubgraphClient struct {
	client *graphql.Client
}

func NewSubgraphClient(endpoint string, timeout time.Duration) *SubgraphClient {
	return &SubgraphClient{
		client: graphql.NewClient(endpoint, graphql.WithHTTPClient(&http.Client{Timeout: timeout})),
	}
}

func (s *SubgraphClient) ReferralStats(ctx context.Context, address string) (*models.ReferralStats, error) {
	req := graphql.NewRequest(referralStatsQuery)
	req.Var("userId", strings.ToLower(address))

	var data models.ReferralStatsData
	if err := s.client.Run(ctx, req, &data); err != nil {
		return nil, wrapOp("referral_stats", err)
	}
	if data.User == nil {
		return &models.ReferralStats{Level1TotalRewards: "0", Level2TotalRewards: "0", TotalRewards: "0"}, nil
	}
	return data.User, nil
}

func (s *SubgraphClient) ReferralList(ctx context.Context, address string) (*models.ReferralList, error) {
	req := graphql.NewRequest(referralListQuery)
	req.Var("userId", strings.ToLower(address))

	var data models.ReferralListData
	if err := s.client.Run(ctx, req, &data); err != nil {
		return nil, wrapOp("referral_list", err)
	}
	if data.User == nil {
		return &models.ReferralList{
			Level1Referrals: []models.Level1Referral{},
			Level2Referrals: []models.Level2Referral{},
		}, nil
	}
	return data.User, nil
}
