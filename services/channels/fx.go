package channels

import (
	"go.uber.org/fx"

	"socialplane/pkg/config"
)

var Module = fx.Module("channels",
	fx.Provide(
		NewFacebookPublisher,
		NewInstagramFeedPublisher,
		NewInstagramStoryPublisher,
		NewLinkedInPublisher,
		ProvideRegistry,
	),
)

func ProvideRegistry(
	cfg *config.Config,
	fb *FacebookPublisher,
	feed *InstagramFeedPublisher,
	story *InstagramStoryPublisher,
	li *LinkedInPublisher,
) *Registry {
	publishers := []Publisher{fb, feed, story}
	if cfg.LinkedIn.Enabled {
		publishers = append(publishers, li)
	}
	return NewRegistry(publishers...)
}
