package database

type RoomRepository interface {
	Ping() error
	CreateRoomRecord(params CreateRoomRecordParams) (RoomRecord, error)
	GetRoomRecord(id string) (RoomRecord, error)
	ListRoomRecords(fields []string, filters map[string]string) ([]RoomRecord, error)
	ListActiveRoomRecords() ([]ActiveRoomRecord, error)
	UpdateRoomParticipant(params UpdateRoomParticipantParams) (RoomRecord, error)
	UpdateRoomRecord(id string, muts []Mutation, onlyIfActive bool) error
	Touch(id string, onlyIfActive bool) error
	DeleteRoomRecord(id string) error
}
