package mocks

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Repository --dir ../domain/override --output domain/override --outpkg overridemock --filename repository_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Source --dir ../domain/leaderboard --output domain/leaderboard --outpkg leaderboardmock --filename source_mock.go
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name Fetcher --dir ../domain/livestatus --output domain/livestatus --outpkg livestatusmock --filename fetcher_mock.go
